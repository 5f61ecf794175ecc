package main

//go:generate swag init -g cmd/raise/main.go -o docs

// @title           Raise API
// @version         0.1.0
// @description     Watchlist scheduling, analysis dispatch and the Telegram position ledger.
// @host            localhost:8000
// @BasePath        /
// @schemes         http
