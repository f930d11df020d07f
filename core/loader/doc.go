// Package loader provides the plugin-like feature loading system.
//
// Each HTTP surface implements the Feature interface and is registered with a
// Manager, which loads the enabled ones onto the Fiber router at startup.
//
// # Feature Interface
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// # Manager
//
// The Manager struct holds the registry of available features. It handles:
//   - Registration of features via Register()
//   - Initialization and loading of enabled features via LoadAll()
//
// Features such as 'verify' and 'links' are developed and tested in isolation
// and only meet in the start command.
package loader
