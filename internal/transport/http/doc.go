// Package http implements the HTTP request handlers for the FundLens web
// service. It is a thin layer between transport and business logic:
// handlers parse and validate requests, delegate to the service layer, and
// format responses.
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Store
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "batch 2f1c... not found",
//	    "instance": "/api/uploads/2f1c..."
//	}
//
// Success responses use render envelopes of the form
// {"status":"success","data":...}.
//
// # Testing
//
// Handlers are tested with httptest against mocked service interfaces,
// covering both the success envelopes and the problem documents.
package http
