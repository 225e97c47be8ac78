// Package container wires the application with samber/do. Providers are lazy:
// a backend is only connected when something that needs it is invoked.
package container

import "github.com/samber/do"

// NewServer registers everything the HTTP server needs.
func NewServer(options *Options) *do.Injector {
	injector := do.New()
	do.ProvideValue(injector, options)

	LoggerPackage(injector)
	RedisPackage(injector)
	PostgresPackage(injector)
	TransportPackage(injector)
	CachePackage(injector)
	RepositoryPackage(injector)
	PublisherGroupPackage(injector)
	ShortenerPackage(injector)
	InvalidationPackage(injector)
	RateLimitPackage(injector)
	HTTPPackage(injector)
	ServerPackage(injector)

	return injector
}

// NewConsumer registers the analytics consumer.
func NewConsumer(options *Options) *do.Injector {
	injector := do.New()
	do.ProvideValue(injector, options)

	LoggerPackage(injector)
	RedisPackage(injector)
	TransportPackage(injector)
	AnalyticsPackage(injector)

	return injector
}
