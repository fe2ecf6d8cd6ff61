/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package version holds build-time identifiers injected via
// -ldflags "-X ...=...", read by the `version` command and the
// Dispatcher's MCP server identity (spec §4.G's mcp.Implementation).
package version

// Version, Commit, and BuildDate default to "dev"/"unknown" for
// go run/go install and are overwritten at release build time via
// -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// BuildInfo is the `version --output json` payload.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// GetVersion returns the semantic version string.
func GetVersion() string { return Version }

// GetBuildInfo returns the full build provenance triple.
func GetBuildInfo() BuildInfo {
	return BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}
}
