package sql_test

import (
	"context"
	"fmt"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/syssam/hydrate/boot"
	"github.com/syssam/hydrate/dialect"
	"github.com/syssam/hydrate/dialect/sql"
	"github.com/syssam/hydrate/loader"
	"github.com/syssam/hydrate/metamodel"
)

func ExampleNewStatsDriver() {
	db, mock, err := sqlmock.New()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer db.Close()
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"title"}).AddRow("shopping"))

	m, err := boot.Parse([]byte(`
types:
  - name: zoo.Note
    mode: map
    attributes:
      - name: title
`))
	if err != nil {
		fmt.Println(err)
		return
	}
	mm, err := metamodel.New(m)
	if err != nil {
		fmt.Println(err)
		return
	}

	sd := sql.NewStatsDriver(sql.OpenDB(dialect.SQLite, db))
	l, _ := loader.New(mm)
	objs, err := l.Load(context.Background(), sd, "zoo.Note", "SELECT * FROM notes")
	fmt.Println(len(objs), err, sd.QueryStats().Stats().TotalQueries)
	// Output: 1 <nil> 1
}
