package web

import "embed"

// StaticFS embeds the single-page app (html/js/css).
//
//go:embed static/*
var StaticFS embed.FS
