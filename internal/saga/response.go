package saga

import (
	"net/http"

	"github.com/wonny/stockvaluation/backend/internal/contracts"
)

// Response is the outcome of one saga run: a status code, the most complete
// report obtained (possibly nil) and an optional error message
type Response struct {
	StatusCode   int
	Report       *contracts.Report
	ErrorMessage string
}

// Body renders the response with the given formatter
func (r *Response) Body(f Formatter) string {
	return f.Format(r.Report, r.ErrorMessage)
}

func ok(report *contracts.Report, errorMessage string) *Response {
	return &Response{StatusCode: http.StatusOK, Report: report, ErrorMessage: errorMessage}
}

func failure(statusCode int, errorMessage string) *Response {
	return &Response{StatusCode: statusCode, ErrorMessage: errorMessage}
}
