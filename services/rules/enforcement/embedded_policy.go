// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
This file serves as the bridge between the build system and the runtime logic. It utilizes the Go
embed package to bake the default_validation_policy.yaml file directly into the compiled binary.
This ensures a working rule set always ships with the executable, even when no policy file is
mounted next to it.
*/

package enforcement

import (
	_ "embed"
)

// DefaultValidationPolicy holds the raw byte content of the
// 'default_validation_policy.yaml' file.
//
// This variable is populated at compile-time using the Go 'embed'
// directive. The embedded policy is the fallback rule set: operators
// override individual rules by pointing the service at an external
// policy file, which is merged over these defaults at load time.
//
// Usage:
//
//	// Pass these bytes directly to yaml.Unmarshal
//	err := yaml.Unmarshal(enforcement.DefaultValidationPolicy, &targetStruct)
//
//go:embed default_validation_policy.yaml
var DefaultValidationPolicy []byte
