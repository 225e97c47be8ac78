package container

import (
	"fmt"

	"github.com/samber/do"
	"github.com/serroba/wormhole/internal/events"
	"github.com/serroba/wormhole/internal/messaging"
	"github.com/serroba/wormhole/internal/shortener"
	"github.com/serroba/wormhole/internal/tinyflake"
	"go.uber.org/zap"
)

// ShortenerPackage provides the link service and its code generator.
func ShortenerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (shortener.CodeGenerator, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.Generator == "nanoid" {
			return shortener.NewNanoidGenerator(opts.CodeLength)
		}

		settings, err := opts.allocatorSettings()
		if err != nil {
			return nil, err
		}

		ids, err := tinyflake.NewGenerator(settings)
		if err != nil {
			return nil, err
		}

		switch opts.Generator {
		case "tinyflake":
			return shortener.NewTinyflakeGenerator(ids), nil
		case "obfuscated":
			prime, mask, err := opts.obfuscation()
			if err != nil {
				return nil, err
			}

			return shortener.NewObfuscatedGenerator(ids, prime, mask)
		default:
			return nil, fmt.Errorf("unknown generator %q", opts.Generator)
		}
	})

	do.Provide(i, func(i *do.Injector) (*shortener.Service, error) {
		opts := do.MustInvoke[*Options](i)
		publisher := do.MustInvoke[*messaging.PublisherGroup](i).Publisher()

		return shortener.NewService(
			do.MustInvoke[shortener.Repository](i),
			do.MustInvoke[shortener.CodeGenerator](i),
			uint8(opts.NodeID),
			messaging.NewPublishFunc[events.LinkCreated](publisher, events.TopicLinkCreated),
			messaging.NewPublishFunc[events.LinkDeleted](publisher, events.TopicLinkDeleted),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}
