package client

import (
	"fmt"
	"strings"
)

const searchPromptTemplate = `You are an intelligent search API. Your task is to find applications in a provided list that match the user's search.
User search: %q
Available applications: %s
Respond ONLY with a JSON object in the format {"apps": ["AppName1", "AppName2", ...]} containing the names of the matching applications from the list. If no application matches, return an empty array.`

const chatPromptTemplate = `You are a helpful assistant specialized in recommending macOS applications.
Your conversation with the user is private and will not be saved.
The user will describe a need. Your task is to suggest one or more applications that meet that need.
For each suggestion, give the application name in bold (e.g. **App Name**) and a short description of what it does.
If you do not know an application, say that you could not find a recommendation.

User need: %q

Suggestions:`

// SearchPrompt builds the classification prompt for an app search.
func SearchPrompt(query string, candidateNames []string) string {
	return fmt.Sprintf(searchPromptTemplate, query, strings.Join(candidateNames, ", "))
}

// ChatPrompt builds the open-ended recommendation prompt.
func ChatPrompt(message string) string {
	return fmt.Sprintf(chatPromptTemplate, message)
}
