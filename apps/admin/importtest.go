package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/cobra"

	"github.com/trezcool/elimu/core/catalog"
	appfs "github.com/trezcool/elimu/fs"
)

const (
	testSchemaPath = "schemas/test.schema.json"
	testSchemaURL  = "schema://test.schema.json"
)

var (
	testSchemaOnce sync.Once
	testSchema     *jsonschema.Schema
	testSchemaErr  error
)

func compiledTestSchema() (*jsonschema.Schema, error) {
	testSchemaOnce.Do(func() {
		raw, err := appfs.FS.ReadFile(testSchemaPath)
		if err != nil {
			testSchemaErr = errors.Wrap(err, "reading test schema")
			return
		}
		var doc any
		if err = json.Unmarshal(raw, &doc); err != nil {
			testSchemaErr = errors.Wrap(err, "parsing test schema")
			return
		}
		c := jsonschema.NewCompiler()
		if err = c.AddResource(testSchemaURL, doc); err != nil {
			testSchemaErr = errors.Wrap(err, "adding test schema")
			return
		}
		testSchema, testSchemaErr = c.Compile(testSchemaURL)
	})
	return testSchema, testSchemaErr
}

// decodeTest checks raw against the test schema before decoding it.
func decodeTest(raw []byte) (catalog.NewTest, error) {
	schema, err := compiledTestSchema()
	if err != nil {
		return catalog.NewTest{}, err
	}

	var doc any
	if err = json.Unmarshal(raw, &doc); err != nil {
		return catalog.NewTest{}, errors.Wrap(err, "invalid JSON")
	}
	if err = schema.Validate(doc); err != nil {
		return catalog.NewTest{}, errors.Wrap(err, "test does not match the schema")
	}

	var nt catalog.NewTest
	if err = json.Unmarshal(raw, &nt); err != nil {
		return catalog.NewTest{}, errors.Wrap(err, "decoding test")
	}
	return nt, nil
}

func (cli *commandLine) importTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-test",
		Short: "Create a test from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			courseID, _ := cmd.Flags().GetString("course")
			email, _ := cmd.Flags().GetString("instructor")

			raw, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrap(err, "reading test file")
			}
			nt, err := decodeTest(raw)
			if err != nil {
				return err
			}
			if err = nt.Validate(cli.validate); err != nil {
				return cli.invalid(err)
			}

			ctx := cmd.Context()
			instructor, err := cli.usrSvc.GetByEmail(ctx, email)
			if err != nil {
				return err
			}
			if !instructor.IsInstructor() {
				return errors.Errorf("%q is not an instructor", instructor.Email)
			}

			t, err := cli.catalogSvc.CreateTest(ctx, instructor.ID, courseID, nt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "test %q imported with %d question(s): %s\n", t.Title, len(t.Questions), t.ID)
			return nil
		},
	}
	cmd.Flags().String("file", "", "path to the test JSON file")
	cmd.Flags().String("course", "", "ID of the course receiving the test")
	cmd.Flags().String("instructor", "", "email of the instructor owning the course")
	for _, name := range []string{"file", "course", "instructor"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
