package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Source --dir ../domain/fixture --output domain/fixture --outpkg fixturemock --filename source_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name DeltaSource --dir ../domain/fixture --output domain/fixture --outpkg fixturemock --filename delta_source_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Prober --dir ../domain/fixture --output domain/fixture --outpkg fixturemock --filename prober_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Source --dir ../domain/standing --output domain/standing --outpkg standingmock --filename source_mock.go
