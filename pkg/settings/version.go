package settings

// set by -ldflags "-X github.com/liut/showroom/pkg/settings.version=..."
var version = "dev"
