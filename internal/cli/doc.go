// Package cli implements the hfwatch command-line interface.
//
// The package is organized around Cobra commands. Each command loads the
// config, builds the pieces it needs from the internal packages, and hands
// off to them.
//
// # Command Structure
//
//	hfwatch discover             - List candidate endpoints
//	hfwatch watch [endpoint]     - Live dashboard, or one line per snapshot
//	hfwatch snapshot [endpoint]  - Fetch once; print, save, or write a PNG
//	hfwatch endpoints add|remove - Edit discovery.endpoints in the config
//	hfwatch init                 - Create .hfwatch.yaml
//	hfwatch version              - Build information
//
// # Wiring
//
// Every command that talks to endpoints uses the same building blocks:
//
//  1. discovery.SSHSource over discovery.endpoints and the ssh_config aliases
//  2. remote.Connector configured from the inspector and connect sections
//  3. attach.Manager for the attach, with an owner suited to the command
//  4. refresher.Refresher for polling, with the MQTT publisher added as a
//     listener when publish.broker is set
//
// # Flag Handling
//
// Global flags (--config, --debug, --log-file, --color) are defined on the
// root command and available to all subcommands.
package cli
