package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, http.StatusOK, AsCodeErr(uint32(code), message))
}

// ErrorDetail is the data of a failed response that carries the individual
// errors and warnings, e.g. of a rejected save.
type ErrorDetail struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// Fail writes the same envelope as Error with detail attached as data.
func Fail(c *gin.Context, code int, message string, detail ErrorDetail) {
	c.JSON(http.StatusOK, gin.H{
		"code": code,
		"msg":  message,
		"data": detail,
	})
}
