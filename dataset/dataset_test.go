package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/YuminosukeSato/vehicleprice/pkg/config"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

const vehiclesCSV = `Car_Name,Year,Selling_Price,Present_Price,Driven_Kms,Fuel_Type,Selling_type,Transmission,Owner
ritz,2014,3.35,5.59,27000,Petrol,Dealer,Manual,0
sx4,2013,4.75,9.54,43000,Diesel,Dealer,Manual,0
ciaz,2017,7.25,9.85,6900,Petrol,Dealer,Manual,0
wagon r,2011,2.85,4.15,5200,Petrol,Dealer,Manual,0
swift,2014,4.6,6.87,42450,Diesel,Dealer,Manual,0
`

func writeZip(t *testing.T, dir, name string, members map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for member, content := range members {
		w, err := zw.Create(member)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeGzip(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "train.csv")
	if err := os.WriteFile(plain, []byte(vehiclesCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"zip", writeZip(t, dir, "train_data.csv.zip", map[string]string{"train_data.csv": vehiclesCSV})},
		{"gzip", writeGzip(t, dir, "train_data.csv.gz", vehiclesCSV)},
		{"plain", plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df, err := Load(tt.path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if df.Nrow() != 5 || df.Ncol() != 9 {
				t.Errorf("dims = %dx%d, want 5x9", df.Nrow(), df.Ncol())
			}
			if got := df.Col("Present_Price").Float()[1]; got != 9.54 {
				t.Errorf("Present_Price[1] = %v", got)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.csv.zip")},
		{"two members", writeZip(t, dir, "two.zip", map[string]string{"a.csv": vehiclesCSV, "b.csv": vehiclesCSV})},
		{"empty archive", writeZip(t, dir, "empty.zip", map[string]string{})},
		{"header only", writeZip(t, dir, "header.zip", map[string]string{"a.csv": strings.SplitN(vehiclesCSV, "\n", 2)[0] + "\n"})},
	}
	notZip := filepath.Join(dir, "bad.zip")
	if err := os.WriteFile(notZip, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests = append(tests, struct {
		name string
		path string
	}{"corrupt archive", notZip})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func loadFixture(t *testing.T) dataframe.DataFrame {
	t.Helper()
	return dataframe.ReadCSV(strings.NewReader(vehiclesCSV),
		dataframe.HasHeader(true), dataframe.DetectTypes(true))
}

func TestEngineerFeatures(t *testing.T) {
	df := loadFixture(t)
	cfg := config.Default()

	out, err := EngineerFeatures(df, cfg)
	if err != nil {
		t.Fatalf("EngineerFeatures failed: %v", err)
	}

	for _, name := range out.Names() {
		if name == "Year" || name == "Car_Name" {
			t.Errorf("column %s should have been dropped", name)
		}
	}
	age, err := out.Col("Age").Int()
	if err != nil {
		t.Fatal(err)
	}
	years, _ := df.Col("Year").Int()
	for i := range years {
		if age[i] != 2021-years[i] {
			t.Errorf("row %d: Age = %d, want %d", i, age[i], 2021-years[i])
		}
	}
	if df.Ncol() != 9 {
		t.Error("input frame must not be modified")
	}
}

func TestEngineerFeaturesSchemaErrors(t *testing.T) {
	cfg := config.Default()

	noYear := loadFixture(t).Drop([]string{"Year"})
	_, err := EngineerFeatures(noYear, cfg)
	var verr *errors.ValidationError
	if !errors.As(err, &verr) || verr.ParamName != "Year" {
		t.Errorf("expected ValidationError for Year, got %v", err)
	}

	textYear := dataframe.ReadCSV(strings.NewReader("Car_Name,Year\na,old\n"),
		dataframe.HasHeader(true), dataframe.DetectTypes(true))
	if _, err := EngineerFeatures(textYear, cfg); err == nil {
		t.Error("expected error for non-integer Year")
	}
}

func TestSplitXY(t *testing.T) {
	df, err := EngineerFeatures(loadFixture(t), config.Default())
	if err != nil {
		t.Fatal(err)
	}

	X, y, err := SplitXY(df, "Present_Price")
	if err != nil {
		t.Fatalf("SplitXY failed: %v", err)
	}
	if X.Ncol() != df.Ncol()-1 {
		t.Errorf("X has %d columns, want %d", X.Ncol(), df.Ncol()-1)
	}
	for _, n := range X.Names() {
		if n == "Present_Price" {
			t.Error("target column left in features")
		}
	}
	r, c := y.Dims()
	if r != 5 || c != 1 {
		t.Fatalf("y dims = %dx%d", r, c)
	}
	want := []float64{5.59, 9.54, 9.85, 4.15, 6.87}
	for i, w := range want {
		if y.At(i, 0) != w {
			t.Errorf("y[%d] = %v, want %v", i, y.At(i, 0), w)
		}
	}

	if _, _, err := SplitXY(df, "Price"); err == nil {
		t.Error("expected error for missing target")
	}
	if _, _, err := SplitXY(df, "Fuel_Type"); err == nil {
		t.Error("expected error for non-numeric target")
	}
}

func TestPartitionColumns(t *testing.T) {
	names := []string{"Selling_Price", "Driven_Kms", "Fuel_Type", "Selling_type", "Transmission", "Owner", "Age"}
	categorical := []string{"Fuel_Type", "Selling_type", "Transmission"}

	numeric, cat, err := PartitionColumns(names, categorical)
	if err != nil {
		t.Fatal(err)
	}
	wantNum := []string{"Selling_Price", "Driven_Kms", "Owner", "Age"}
	if strings.Join(numeric, ",") != strings.Join(wantNum, ",") {
		t.Errorf("numeric = %v, want %v", numeric, wantNum)
	}
	if strings.Join(cat, ",") != strings.Join(categorical, ",") {
		t.Errorf("categorical = %v", cat)
	}
	if len(numeric)+len(cat) != len(names) {
		t.Error("partition does not cover every column")
	}

	if _, _, err := PartitionColumns(names[:2], categorical); err == nil {
		t.Error("expected error for absent categorical column")
	}
}

func TestCheckSameColumns(t *testing.T) {
	a := loadFixture(t)
	b := a.Select([]string{"Owner", "Year", "Car_Name", "Selling_Price", "Present_Price", "Driven_Kms", "Fuel_Type", "Selling_type", "Transmission"})
	if err := CheckSameColumns(a, b); err != nil {
		t.Errorf("reordered columns rejected: %v", err)
	}
	if err := CheckSameColumns(a, a.Drop([]string{"Owner"})); err == nil {
		t.Error("expected error for missing column")
	}
}
