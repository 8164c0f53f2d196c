package main

// General API documentation for swaggo. Run `swag init` to generate docs.
//
// @title           classd API
// @version         1.0
// @description     HTTP API for text classification with hot-swappable model backends.
//
// @contact.name   classd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
