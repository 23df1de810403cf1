// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resonanz-lab/htif/services/analyzer/handlers"
	"github.com/resonanz-lab/htif/services/analyzer/middleware"
)

// SetupRoutes registers the analyzer's HTTP surface on the router.
//
// Rate limiting applies only to /v1/analyze; health, downloads, and
// metrics stay unthrottled so probes and dashboards keep working while
// analysis traffic is shed.
func SetupRoutes(router *gin.Engine, deps handlers.Deps, limiter *middleware.RateLimiter) {
	router.GET("/health", handlers.HandleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		analyze := v1.Group("")
		if limiter != nil {
			analyze.Use(limiter.Middleware())
		}
		analyze.POST("/analyze", handlers.HandleAnalyze(deps))

		v1.GET("/profiles", handlers.HandleListProfiles(deps.Profiles))
		v1.GET("/downloads/:name", handlers.HandleDownload(deps.Exporter))
	}
}
