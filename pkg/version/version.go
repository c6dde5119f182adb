package version

// Version is the current version of the media moderation server
const Version = "0.1.7"

// UserAgent returns the User-Agent string for outbound HTTP requests
func UserAgent() string {
	return "mediamod/" + Version
}

// ServerHeader returns the Server header value for HTTP responses
func ServerHeader() string {
	return "mediamod/" + Version
}
