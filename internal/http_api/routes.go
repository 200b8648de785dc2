package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/health", s.health)

	api := s.router.Group("/api/v1")
	api.GET("/challenge", s.challenge)
	api.POST("/invoice", s.createInvoice)
	api.GET("/status", s.status)

	protected := api.Group("/protected", s.gate.Handler())
	protected.GET("/test", s.protectedTest)

	// The simulated payer is only reachable in development; in production
	// payments happen on the real network.
	if s.development {
		mock := api.Group("/mock")
		mock.POST("/settle/:hash", s.mockSettle)
		mock.GET("/preimage/:hash", s.mockPreimage)
	}
}
