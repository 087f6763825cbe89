// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package templates holds the embedded HTML pages, static assets and the
// template function map.
package templates

import (
	"embed"
	"html/template"
	"io/fs"

	"familybudget/internal/models"
)

//go:embed html/*.html
var pageFS embed.FS

//go:embed static
var staticFS embed.FS

// Parse builds the page set. Each file under html/ is addressable by its
// base name, e.g. "dashboard.html"; layout.html supplies the shared
// "header" and "footer" blocks.
func Parse(cats *models.CategorySet) (*template.Template, error) {
	return template.New("").Funcs(FuncMap(cats)).ParseFS(pageFS, "html/*.html")
}

// Static returns the assets served under /static.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
