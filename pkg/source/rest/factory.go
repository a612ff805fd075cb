package rest

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/http"
	"github.com/glorpus-work/repokit/pkg/source"
)

// Factory creates REST sources sharing one HTTP client.
type Factory struct {
	client http.Doer

	// allowLocal lets loopback hosts pass the remote check.
	allowLocal bool
}

var _ source.Factory = (*Factory)(nil)

// NewFactory returns a factory whose sources use client.
func NewFactory(client http.Doer) *Factory {
	return &Factory{client: client}
}

func (f *Factory) Type() string { return source.TypeRest }

// Create returns a source for details without contacting the server.
func (f *Factory) Create(_ context.Context, details source.Details) (source.Source, error) {
	if err := source.CheckType(source.TypeRest, details); err != nil {
		return nil, err
	}
	if _, err := url.Parse(details.Arg); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "source argument %q: %v", details.Arg, err)
	}
	return NewSource(details, f.client), nil
}

// Add checks that the argument is a remote https URL and stamps the
// identifier the server reports.
func (f *Factory) Add(ctx context.Context, details *source.Details) (bool, error) {
	if err := source.CheckType(source.TypeRest, *details); err != nil {
		return false, err
	}
	if err := f.validateArg(details.Arg); err != nil {
		return false, err
	}
	info, err := fetchInformation(ctx, f.client, details.Arg)
	if err != nil {
		return false, err
	}
	details.Identifier = info.SourceIdentifier
	logger.Info("REST source validated", logger.Fields{"source": details.Name, "identifier": details.Identifier})
	return true, nil
}

// Update refreshes the identifier from the server and reports whether it changed.
func (f *Factory) Update(ctx context.Context, details *source.Details) (bool, error) {
	if err := source.CheckType(source.TypeRest, *details); err != nil {
		return false, err
	}
	info, err := fetchInformation(ctx, f.client, details.Arg)
	if err != nil {
		return false, err
	}
	if strings.EqualFold(info.SourceIdentifier, details.Identifier) {
		return false, nil
	}
	logger.Warn("REST source changed identifier", logger.Fields{
		"source": details.Name,
		"old":    details.Identifier,
		"new":    info.SourceIdentifier,
	})
	details.Identifier = info.SourceIdentifier
	return true, nil
}

// Remove has nothing to clean up: REST sources keep no local state.
func (f *Factory) Remove(_ context.Context, details *source.Details) (bool, error) {
	return false, source.CheckType(source.TypeRest, *details)
}

func (f *Factory) validateArg(arg string) error {
	u, err := url.Parse(arg)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.Wrapf(errors.ErrSourceNotRemote, "%q", arg)
	}
	if !f.allowLocal && isLocalHost(u.Hostname()) {
		return errors.Wrapf(errors.ErrSourceNotRemote, "%q", arg)
	}
	if u.Scheme != "https" {
		return errors.Wrapf(errors.ErrSourceNotSecure, "%q", arg)
	}
	return nil
}

func isLocalHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}
