package version

// Version is the release identifier reported by the API and the CLI.
const Version = "0.3.1"
