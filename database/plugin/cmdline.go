// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	"fmt"

	"github.com/spf13/pflag"
)

// FlagName returns the command line flag name for a plugin option, for
// example metadata-postgres-host
func FlagName(pluginType PluginType, pluginName string, optionName string) string {
	return fmt.Sprintf(
		"%s-%s-%s",
		PluginTypeName(pluginType),
		pluginName,
		optionName,
	)
}

// PopulateCmdlineOptions adds a flag for every option of every registered
// plugin. Flags write straight into the option destinations.
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			name := FlagName(entry.Type, entry.Name, opt.Name)
			var ok bool
			switch opt.Type {
			case PluginOptionTypeString:
				var dest *string
				if dest, ok = opt.Dest.(*string); ok {
					def, _ := opt.DefaultValue.(string)
					fs.StringVar(dest, name, def, opt.Description)
				}
			case PluginOptionTypeBool:
				var dest *bool
				if dest, ok = opt.Dest.(*bool); ok {
					def, _ := opt.DefaultValue.(bool)
					fs.BoolVar(dest, name, def, opt.Description)
				}
			case PluginOptionTypeInt:
				var dest *int
				if dest, ok = opt.Dest.(*int); ok {
					def, _ := opt.DefaultValue.(int)
					fs.IntVar(dest, name, def, opt.Description)
				}
			case PluginOptionTypeUint:
				var dest *uint64
				if dest, ok = opt.Dest.(*uint64); ok {
					def, _ := opt.DefaultValue.(uint64)
					fs.Uint64Var(dest, name, def, opt.Description)
				}
			}
			if !ok {
				return fmt.Errorf(
					"plugin %s option %s: unsupported destination %T",
					entry.Name,
					opt.Name,
					opt.Dest,
				)
			}
		}
	}
	return nil
}
