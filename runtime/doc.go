// Package runtime loads parser plugins and drives parse sessions.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, runtime.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	// Load a plugin by name from the plugin directory
//	p, err := rt.LoadPlugin(ctx, "ini")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	root, err := p.ParseFile(ctx, "app.ini")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(root.Values("name"))
//
// # Loading Plugins
//
//	Load(path)            - read a plugin file
//	LoadBytes(name, data) - compile plugin bytes
//	LoadPlugin(name)      - resolve a name through the Resolver, then Load
//	LoadDefault()         - LoadPlugin(Config.DefaultPlugin)
//
// Plugin files may be WebAssembly modules, zstd or gzip compressed modules,
// or JavaScript sources. The format is sniffed from the content.
//
// # Sessions
//
// Every parse runs in its own Session: a fresh sandbox instance, a fresh
// resource table and the input stream. A session moves from Created through
// Running to Finalized, or to Faulted on any error, and runs only once.
// Plugins are safe for concurrent use; sessions are not.
package runtime
