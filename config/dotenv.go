package config

import "github.com/joho/godotenv"

func loadDotenv() error {
	return godotenv.Load()
}
