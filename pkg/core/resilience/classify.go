// Package resilience wraps calls to the remote reasoning service with error
// classification and exponential backoff.
package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"syscall"

	"github.com/openai/openai-go/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is the retry classification of a failure.
type Kind int

const (
	KindFatal Kind = iota
	KindTransient
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "fatal"
	}
}

func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindRateLimited
}

// statusCoder is implemented by provider errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// permanent is implemented by local errors that must never be retried,
// whatever their message says.
type permanent interface {
	Permanent() bool
}

// transient is implemented by remote errors that carry no status but are
// still the service's fault, such as an empty or unparseable reply.
type transient interface {
	Transient() bool
}

// Classify maps an error onto a retry Kind. Structured provider errors are
// inspected first; message matching is the last resort.
func Classify(err error) Kind {
	if err == nil {
		return KindFatal
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	var p permanent
	if errors.As(err, &p) && p.Permanent() {
		return KindFatal
	}
	var tr transient
	if errors.As(err, &tr) && tr.Transient() {
		return KindTransient
	}

	switch {
	case errors.Is(err, context.Canceled):
		return KindFatal
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	}

	var gv genai.APIError
	if errors.As(err, &gv) {
		return fromHTTP(gv.Code, gv.Status)
	}
	var gp *genai.APIError
	if errors.As(err, &gp) && gp != nil {
		return fromHTTP(gp.Code, gp.Status)
	}
	var oe *openai.Error
	if errors.As(err, &oe) && oe != nil {
		return fromHTTP(oe.StatusCode, "")
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) && ge != nil {
		return fromHTTP(ge.Code, ge.Message)
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		return fromGRPC(st.Code())
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return fromHTTP(sc.StatusCode(), "")
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return KindTransient
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return KindTransient
	}

	return fromMessage(err.Error())
}

func fromHTTP(code int, statusText string) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case strings.Contains(strings.ToUpper(statusText), "RESOURCE_EXHAUSTED"):
		return KindRateLimited
	case code >= 500, code == http.StatusRequestTimeout:
		return KindTransient
	default:
		return KindFatal
	}
}

func fromGRPC(c codes.Code) Kind {
	switch c {
	case codes.ResourceExhausted:
		return KindRateLimited
	case codes.Unavailable, codes.Internal, codes.Unknown, codes.DeadlineExceeded, codes.Aborted:
		return KindTransient
	default:
		return KindFatal
	}
}

var (
	rateLimitPattern = regexp.MustCompile(`\b429\b|resource[_ ]exhausted|quota`)
	transientPattern = regexp.MustCompile(`\b50[0234]\b|xhr error|rpc failed|unknown error|service unavailable|connection reset`)
)

// fromMessage handles errors that only expose text, such as proxied SDK failures.
func fromMessage(msg string) Kind {
	msg = strings.ToLower(msg)
	switch {
	case rateLimitPattern.MatchString(msg):
		return KindRateLimited
	case transientPattern.MatchString(msg):
		return KindTransient
	default:
		return KindFatal
	}
}
