package transport

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-initiatives/core"
)

type failureKind int

const (
	failNoClient failureKind = iota
	failNoURL
	failBadURL
	failEncode
	failExecute
	failReadBody
	failBodyTooLarge
)

var failures = map[failureKind]struct {
	message  string
	category goerrors.Category
	status   int
	textCode string
}{
	failNoClient:     {"transport: http client is not configured", goerrors.CategoryInternal, http.StatusInternalServerError, core.ErrorInternal},
	failNoURL:        {"transport: request url is required", goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput},
	failBadURL:       {"transport: invalid request", goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput},
	failEncode:       {"transport: encode json body", goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput},
	failExecute:      {"transport: provider unreachable", goerrors.CategoryExternal, http.StatusBadGateway, core.ErrorProviderTransient},
	failReadBody:     {"transport: read response body", goerrors.CategoryExternal, http.StatusBadGateway, core.ErrorProviderTransient},
	failBodyTooLarge: {"transport: response body too large", goerrors.CategoryExternal, http.StatusBadGateway, core.ErrorProviderTransient},
}

func failure(kind failureKind, source error, metadata map[string]any) error {
	spec := failures[kind]
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, spec.category, spec.message)
	} else {
		err = goerrors.New(spec.message, spec.category)
	}
	err = err.WithCode(spec.status).WithTextCode(spec.textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
