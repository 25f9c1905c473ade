package version

// Version is the current duelink version.
// This will be set during build time using ldflags.
var Version = "dev"
