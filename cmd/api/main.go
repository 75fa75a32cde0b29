package main

import (
	"log"

	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/app/bootstrap"
)

func main() {
	if err := bootstrap.Build(); err != nil {
		log.Fatalf("run api: %v", err)
	}
}
