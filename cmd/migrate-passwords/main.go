// Command migrate-passwords hashes any plain-text passwords left in the users table.
package main

import (
	"log"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"
	"editorial-workflow-api/utils"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	config.InitDB()

	var users []models.User
	if err := config.DB.Select("user_id", "email", "password").Where("delete_at IS NULL").Find(&users).Error; err != nil {
		log.Fatal("Failed to fetch users:", err)
	}

	migrated := 0
	for _, user := range users {
		if user.Password == "" || utils.IsHashed(user.Password) {
			continue
		}

		hashedPassword, err := utils.HashPassword(user.Password)
		if err != nil {
			log.Printf("Failed to hash password for user %s: %v\n", user.Email, err)
			continue
		}

		if err := config.DB.Model(&models.User{}).
			Where("user_id = ?", user.UserID).
			Update("password", hashedPassword).Error; err != nil {
			log.Printf("Failed to update password for user %s: %v\n", user.Email, err)
			continue
		}

		migrated++
		log.Printf("Hashed password for user %s\n", user.Email)
	}

	log.Printf("Password migration completed: %d of %d users updated", migrated, len(users))
}
