// Package api is the HTTP JSON boundary of the directory.
//
// Handlers are thin: they decode a request struct, call one service method,
// and encode a response struct. The service error taxonomy maps onto status
// codes in one place (writeServiceError): validation-class errors are 400,
// missing references 404, conflicts 409. Embedding degradation is part of the
// response body, never an HTTP error.
package api
