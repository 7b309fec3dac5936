// Copyright 2026 The cmlids Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

const sample = `
# Path of the SQLite database the verdicts are recorded in.
# (default "/var/lib/cmlids/verdicts.db")
connection = "/var/lib/cmlids/verdicts.db"

# How long verdicts are kept before they are pruned. (default "24h0m0s")
retention = "24h0m0s"

# Disable verdict recording altogether. (default false)
disable = false
`
