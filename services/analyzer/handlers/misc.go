// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resonanz-lab/htif/services/analyzer/domain"
)

// HandleHealth returns the liveness handler for GET /health.
func HandleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "analyzer",
		})
	}
}

// HandleListProfiles returns the handler for GET /v1/profiles, exposing
// the configured industries and their resolved module orders.
func HandleListProfiles(profiles *domain.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		industries := profiles.Industries()
		orders := make(map[string][]string, len(industries))
		for _, industry := range industries {
			orders[industry] = profiles.ModulesFor(industry)
		}
		c.JSON(http.StatusOK, gin.H{
			"industries": industries,
			"profiles":   orders,
		})
	}
}
