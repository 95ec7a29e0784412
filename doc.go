// Package losocv evaluates activity and affect classifiers with
// Leave-One-Subject-Out (LOSO) cross-validation.
//
// Every distinct subject of a per-window feature table is held out once. The
// remaining subjects train a random forest, features are normalized inside
// the fold, and the held-out subject is scored with accuracy, macro-F1 and a
// confusion matrix over the fixed label space {1, 2, 3}.
//
// # Installation
//
//	go install github.com/YuminosukeSato/losocv/cmd/loso@latest
//
// # Quick Start
//
//	loso -input features_raw.csv -norm global -balanced yes -n_estimators 300
//
// The command writes loso_results.csv, loso_report.txt and
// loso_confusion_matrix.png to the output directory (-out, default ".").
//
// From Go:
//
//	table, err := dataset.LoadCSV("features_raw.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ev, err := evaluation.NewEvaluator(evaluation.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := ev.Run(table)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.MeanAccuracy(), res.MeanF1Macro())
//
// # Normalization modes
//
//   - global: z-score with the training subjects' statistics, applied to train and test
//   - none: raw feature values
//   - transductive_subject: every subject standardized with its own statistics,
//     including the held-out one; scores are optimistic
//
// # Packages
//
//   - dataset: Feature table loading and validation
//   - sklearn/model_selection: LeaveOneGroupOut fold iterator
//   - preprocessing: StandardScaler and the fold normalizers
//   - sklearn/tree: CART DecisionTreeClassifier
//   - sklearn/ensemble: RandomForestClassifier
//   - metrics: Accuracy, precision/recall/F1, confusion matrix, classification report
//   - evaluation: The LOSO fold evaluator
//   - report: Results CSV, text report and heat map
//   - config: Defaults, YAML file and flags
//   - core/model: Core interfaces and fitted-state tracking
//   - core/parallel: Parallel processing utilities
//   - pkg/errors, pkg/log: Structured errors and logging
//
// # License
//
// losocv is released under the MIT License.
package losocv
