// Package qapi serves stored batch reports over HTTP.
package qapi

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Api struct {
	Api    huma.API
	Router *chi.Mux
}

func NewApi() *Api {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	config := huma.DefaultConfig("qsmr Reports", "1.0.0")
	config.Info.Description = "Read-only access to SMR batch reports and their artifacts."

	api := humachi.New(router, config)

	return &Api{Api: api, Router: router}
}
