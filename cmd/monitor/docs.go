package main

//go:generate swag init -g cmd/monitor/main.go -o docs

// @title           Dealerwatch API
// @version         0.1.0
// @description     Dealer inventory scraping, reconciliation, and search.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
