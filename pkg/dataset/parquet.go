package dataset

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetRow is the columnar layout of an Example.
type parquetRow struct {
	Instruction string `parquet:"name=instruction, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Input       string `parquet:"name=input, type=BYTE_ARRAY, convertedtype=UTF8"`
	Output      string `parquet:"name=output, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

const parquetParallelism = 4

// WriteParquet writes examples to a snappy-compressed parquet file at path.
func WriteParquet(path string, examples []Example) error {
	if len(examples) == 0 {
		return ErrNoData
	}
	f, err := createFile(path)
	if err != nil {
		return err
	}
	// The parquet source reopens the file by name.
	f.Close()

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return goerr.Wrap(err, "failed to open parquet file", goerr.V("path", path))
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(parquetRow), parquetParallelism)
	if err != nil {
		return goerr.Wrap(err, "failed to create parquet writer", goerr.V("path", path))
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, ex := range examples {
		row := parquetRow{
			Instruction: ex.Instruction,
			Input:       ex.Input,
			Output:      ex.Output,
		}
		if err := pw.Write(row); err != nil {
			return goerr.Wrap(err, "failed to write parquet row", goerr.V("index", i))
		}
	}
	if err := pw.WriteStop(); err != nil {
		return goerr.Wrap(err, "failed to finish parquet file", goerr.V("path", path))
	}
	return nil
}

// ReadParquet reads every example from the parquet file at path.
func ReadParquet(path string) ([]Example, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open parquet file", goerr.V("path", path))
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(parquetRow), parquetParallelism)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create parquet reader", goerr.V("path", path))
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	if n == 0 {
		return nil, ErrNoData
	}
	rows := make([]parquetRow, n)
	if err := pr.Read(&rows); err != nil {
		return nil, goerr.Wrap(err, "failed to read parquet rows", goerr.V("path", path))
	}

	examples := make([]Example, 0, len(rows))
	for _, row := range rows {
		examples = append(examples, Example{
			Instruction: row.Instruction,
			Input:       row.Input,
			Output:      row.Output,
		})
	}
	return examples, nil
}
