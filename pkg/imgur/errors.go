package imgur

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the stage of an upload that failed.
type Kind int

const (
	// KindTransport means the HTTP request could not be completed.
	KindTransport Kind = iota + 1
	// KindIO means the response body could not be read.
	KindIO
	// KindStatus means the server answered with a non-2xx status.
	KindStatus
	// KindInvalidUTF8 means the response body is not UTF-8 text.
	KindInvalidUTF8
	// KindInvalidJSON means the response body is not a JSON document.
	KindInvalidJSON
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindIO:
		return "io"
	case KindStatus:
		return "status"
	case KindInvalidUTF8:
		return "invalid utf-8"
	case KindInvalidJSON:
		return "invalid json"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// UploadError is returned by Upload for every failure.
type UploadError struct {
	Kind       Kind
	StatusCode int
	// Body is the raw response text for KindStatus and KindInvalidJSON.
	Body string
	Err  error
}

func (e *UploadError) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("imgur request failed: %v", e.Err)
	case KindIO:
		return fmt.Sprintf("read imgur response: %v", e.Err)
	case KindStatus:
		if msg := apiErrorMessage(e.Body); msg != "" {
			return fmt.Sprintf("imgur returned status %d: %s", e.StatusCode, msg)
		}
		return fmt.Sprintf("imgur returned status %d, body: %q", e.StatusCode, e.Body)
	case KindInvalidUTF8:
		return fmt.Sprintf("response body is not valid utf-8: %v", e.Err)
	case KindInvalidJSON:
		return fmt.Sprintf("response body is not valid json. body: %q, err: %v", e.Body, e.Err)
	default:
		return fmt.Sprintf("imgur upload failed (%s): %v", e.Kind, e.Err)
	}
}

func (e *UploadError) Unwrap() error { return e.Err }

// InvalidUTF8Error reports where the response body stops being valid UTF-8.
type InvalidUTF8Error struct {
	ValidUpTo int
}

func (e *InvalidUTF8Error) Error() string {
	return fmt.Sprintf("invalid utf-8 sequence at byte offset %d", e.ValidUpTo)
}

// IsKind reports whether err is an *UploadError of kind k.
func IsKind(err error, k Kind) bool {
	var ue *UploadError
	return errors.As(err, &ue) && ue.Kind == k
}

// apiErrorMessage extracts data.error from an imgur error document. The API
// sends either a string or an object with a message field.
func apiErrorMessage(body string) string {
	doc, err := decode(body)
	if err != nil {
		return ""
	}
	info := &UploadInfo{doc: doc}
	v, ok := info.Lookup("data", "error")
	if !ok {
		return ""
	}
	switch msg := v.(type) {
	case string:
		return strings.TrimSpace(msg)
	case map[string]any:
		if s, ok := msg["message"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
