// Package notification pushes final record lifecycle statuses to chat and
// webhook services through shoutrrr.
package notification

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"regexp"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

// DefaultTimeout bounds one delivery to all URLs
const DefaultTimeout = 10 * time.Second

// serviceURLPattern matches shoutrrr URLs, which carry tokens in user info and path
var serviceURLPattern = regexp.MustCompile(`([a-z][a-z0-9+.-]*://)\S+`)

// Sender is the part of a shoutrrr router the provider uses
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// ShoutrrrProvider sends one message to every configured URL
type ShoutrrrProvider struct {
	urls   []string
	sender Sender
}

// NewShoutrrrProvider builds a router for urls. An invalid URL fails here
// rather than at send time.
func NewShoutrrrProvider(urls []string, timeout time.Duration) (*ShoutrrrProvider, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(scrubError(err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	router.Timeout = timeout
	router.SetLogger(stdlog.New(io.Discard, "", 0))
	return &ShoutrrrProvider{urls: slices.Clone(urls), sender: router}, nil
}

// Send delivers message with an optional title; the first failure is returned
func (s *ShoutrrrProvider) Send(_ context.Context, title, message string) error {
	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	for _, err := range s.sender.Send(message, &params) {
		if err != nil {
			return errors.New(scrubError(err)).
				Component("notification").
				Category(errors.CategoryNetwork).
				Context("urls", len(s.urls)).
				Build()
		}
	}
	return nil
}

// scrubError drops service URLs from err's message
func scrubError(err error) error {
	return fmt.Errorf("%s", logger.RedactSensitiveData(serviceURLPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")))
}
