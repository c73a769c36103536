package main

import "khayalcare/internal/app"

// @title           Khayal Healthcare API
// @version         1.0
// @description     Healthcare services marketplace backend: identity verification, registration and password reset.

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	app.Run()
}
