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

package sizer

import "golang.org/x/exp/constraints"

// Max returns the larger of a and b. The builder tracks a running maximum
// for every variable-width field as entries stream in; this is the one
// generic helper shared across every one of those running maxima, over
// both the unsigned and signed types they're kept in.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
