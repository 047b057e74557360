// Package httputil holds the small helpers shared by the admin HTTP
// handlers: JSON and error responses, query parsing, and request logging,
// recovery and request ID middleware.
//
//	router := mux.NewRouter()
//	router.Use(httputil.RequestIDMiddleware, httputil.RecoveryMiddleware(log), httputil.LoggingMiddleware(log))
//
//	depth, err := httputil.ParseQueryInt(r, "depth", -1)
//	if err != nil {
//		httputil.WriteBadRequest(w, err.Error())
//		return
//	}
//	httputil.WriteJSON(w, http.StatusOK, result)
package httputil
