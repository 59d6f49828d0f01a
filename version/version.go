package version

// Version is the current release of tiktok-cleaner.
const Version = "1.0.0"
