package commands

import "catalogcrawler/internal/pipeline"

// DriverFactory opens a browser and its primary page. The browser driver
// binding itself (Playwright, chromedp, or similar) is an out-of-scope
// external collaborator: this repo depends only on pipeline.Browser/Page,
// never a concrete implementation, so run/resume/auth stay unusable until
// an embedding program calls RegisterDriver with a real binding.
type DriverFactory func() (pipeline.Browser, pipeline.Page, error)

var driverFactory DriverFactory

// RegisterDriver wires a concrete browser binding into run/resume/auth.
func RegisterDriver(factory DriverFactory) {
	driverFactory = factory
}

var errNoDriver = driverNotRegisteredError{}

type driverNotRegisteredError struct{}

func (driverNotRegisteredError) Error() string {
	return "no browser driver registered: call commands.RegisterDriver with a pipeline.Browser binding before running a crawl"
}
