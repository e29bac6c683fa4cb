package usagey

// Version is the published SDK version, sent in the User-Agent header.
const Version = "0.1.0"
