// Copyright (C) 2025 Resonanz Lab (kontakt@resonanz-lab.de)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resonanz-lab/htif/services/analyzer/export"
)

// HandleDownload returns the handler for GET /v1/downloads/:name.
//
// Only artifact names generated by the exporter resolve; anything else
// is rejected before touching the filesystem.
func HandleDownload(exporter *export.Exporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if exporter == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "exports are disabled"})
			return
		}

		name := c.Param("name")
		path, err := exporter.Resolve(name)
		if errors.Is(err, export.ErrInvalidName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid artifact name"})
			return
		}
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
			return
		}

		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.File(path)
	}
}
