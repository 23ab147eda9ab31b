package models

import "fmt"

// AIError is the JSON error body returned by OpenAI compatible APIs.
type AIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// StatusError is a provider failure that carries the HTTP status of the response.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API request failed with status code '%d'", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s API request failed with status code '%d' - %s", e.Provider, e.Code, e.Message)
}

// StatusCode returns the HTTP status code of the failed response.
func (e *StatusError) StatusCode() int {
	return e.Code
}
