package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestRejectionError(t *testing.T) {
	err := Reject("client-mode", "unexpected client mode %q", "source")

	if !IsRejection(err) {
		t.Error("IsRejection = false")
	}
	if !strings.Contains(err.Error(), "client-mode") {
		t.Errorf("message missing check name: %v", err)
	}
	if !strings.Contains(err.Error(), `"source"`) {
		t.Errorf("message missing formatted detail: %v", err)
	}

	wrapped := fmt.Errorf("handling notification: %w", err)
	if !IsRejection(wrapped) {
		t.Error("IsRejection should see through wrapping")
	}
}

func TestResolutionError(t *testing.T) {
	err := &ResolutionError{Service: "TELNET", What: "address"}

	if !IsNotFound(err) {
		t.Error("IsNotFound = false")
	}
	if !stderrors.Is(err, ErrServiceNotFound) {
		t.Error("should unwrap to ErrServiceNotFound")
	}
	if IsRejection(err) {
		t.Error("resolution failure is not a rejection")
	}
}

func TestSessionError(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := &SessionError{Op: "dial-proxy", Endpoint: "example.com:443", Err: cause}

	if !stderrors.Is(err, cause) {
		t.Error("should unwrap to the cause")
	}
	if !strings.Contains(err.Error(), "dial-proxy") || !strings.Contains(err.Error(), "example.com:443") {
		t.Errorf("message missing context: %v", err)
	}
}
