/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package smstream

import (
	"os"
	"runtime"
	"strconv"

	"github.com/klauspost/cpuid/v2"

	"github.com/cloudwego/smstream/internal/isa"
)

// VerifyOnFillIn controls whether FillIn re-reads the blob it just wrote
// and checks it against the builder's recorded state before returning. It
// defaults to on: the cost is one extra decode pass per compiled method,
// paid once, and it is the only thing standing between a sizing bug and
// silent GC-root corruption. Set SMSTREAM_VERIFY_ON_FILLIN=0 to disable it
// in a release build.
var VerifyOnFillIn = parseBoolOrDefault("SMSTREAM_VERIFY_ON_FILLIN", true)

func parseBoolOrDefault(key string, def bool) bool {
	env := os.Getenv(key)
	if env == "" {
		return def
	}
	v, err := strconv.ParseBool(env)
	if err != nil {
		panic("smstream: invalid value for " + key)
	}
	return v
}

// DefaultISA reports the host architecture's instruction set, taken from
// runtime.GOARCH, for callers that never call NewBuilder with an explicit
// InstructionSet. On amd64 it also requires klauspost/cpuid/v2 to report
// an x86-64 feature level. It panics on a host architecture this package
// does not model.
func DefaultISA() InstructionSet {
	switch runtime.GOARCH {
	case "amd64":
		if cpuid.CPU.X64Level() == 0 {
			panic("smstream: DefaultISA: host reports amd64 but cpuid found no x86-64 feature level")
		}
		return isa.X86_64
	case "386":
		return isa.X86
	case "arm64":
		return isa.ARM64
	case "arm":
		return isa.ARM
	default:
		panic("smstream: DefaultISA: unsupported host architecture " + runtime.GOARCH)
	}
}
