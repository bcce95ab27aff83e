// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package version

import (
	"github.com/blang/semver/v4"
)

// Version 为当前库版本，跨边界通过 getVersion 暴露给宿主。
// 必须是合法的 semver，init 中会做一次校验。
const Version = "0.1.0"

var parsed semver.Version

func init() {
	parsed = semver.MustParse(Version)
}

// Current 返回解析后的当前版本。
func Current() semver.Version {
	return parsed
}

// AtLeast 判断当前版本是否不低于给定版本。
// other 非法时返回 false。
func AtLeast(other string) bool {
	v, err := semver.Parse(other)
	if err != nil {
		return false
	}
	return parsed.GE(v)
}
