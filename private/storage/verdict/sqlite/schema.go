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

package sqlite

const (
	// SchemaVersion is the version of the SQLite schema understood by this
	// backend.
	SchemaVersion = 1
	// Schema is the SQLite database layout.
	Schema = `CREATE TABLE Verdicts(
		RowID INTEGER PRIMARY KEY AUTOINCREMENT,
		FlowID INTEGER NOT NULL,
		Class INTEGER NOT NULL,
		Proba0 REAL NOT NULL,
		Proba1 REAL NOT NULL,
		Time INTEGER NOT NULL
	);
	CREATE INDEX VerdictsFlowID ON Verdicts(FlowID);
	CREATE INDEX VerdictsTime ON Verdicts(Time);

	CREATE TABLE Predictions(
		VerdictRowID INTEGER NOT NULL,
		Model TEXT NOT NULL,
		Proba0 REAL NOT NULL,
		Proba1 REAL NOT NULL,
		LatencyNs INTEGER NOT NULL,
		FOREIGN KEY (VerdictRowID) REFERENCES Verdicts(RowID) ON DELETE CASCADE
	);
	CREATE INDEX PredictionsVerdict ON Predictions(VerdictRowID);`
)
