// Package dataset loads the used-vehicle CSV splits into gota data frames
// and prepares them for training.
//
// A split goes through three steps, each returning a new frame:
//
//	df, err := dataset.Load("files/input/train_data.csv.zip")
//	df, err = dataset.EngineerFeatures(df, cfg)
//	X, y, err := dataset.SplitXY(df, cfg.TargetColumn)
//
// Train and test are loaded independently and never merged.
package dataset
