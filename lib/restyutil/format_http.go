package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

func formatHeaders(headers http.Header) string {
	var out strings.Builder
	for k, vals := range headers {
		for _, v := range vals {
			out.WriteString(fmt.Sprintf("%s: %s\n", k, v))
		}
	}
	rendered := out.String()
	return rendered[:len(rendered)-1]
}

func formatRequestBody(req *http.Request) string {
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

// 1: label identifying which site/tool issued the request (e.g. a site
//    name, or "replaydl"/"changelogdiff")
// 2: request method
// 3: request url
// 4: request headers in ("Key: Value" format)
// 5: request body
// 6: response status
// 7: response url
// 8: response headers in ("Key: Value" format)
// 9: response body
const messageInfoTemplate = `---- REQUEST [%s] ----

%s %s

%s

%s

---- RESPONSE ----

%s %s

%s

%s`

// formatHttpMessage renders a dumped request/response pair, tagged with
// label so a multi-site crawl's dump directory (one file per message ID)
// still identifies which site or side tool produced each file.
func formatHttpMessage(label string, res *resty.Response) string {
	requestHeaders := formatHeaders(res.Request.RawRequest.Header)
	responseHeaders := formatHeaders(res.Header())

	responseUrl := res.Request.URL
	redirected, err := res.RawResponse.Location()
	if err == nil {
		responseUrl = redirected.String()
	}

	return fmt.Sprintf(
		messageInfoTemplate,

		label,
		res.Request.Method, res.Request.URL,
		// to trim the last newline off the end of the req headers
		requestHeaders,
		formatRequestBody(res.Request.RawRequest),

		strconv.Itoa(res.StatusCode()), responseUrl,
		responseHeaders,
		res.String(),
	)
}
