// Package mocks provides gomock implementations of the dispatch pipeline collaborators.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	conns := mocks.NewMockConnectionResolver(ctrl)
//	conns.EXPECT().ResolveConnection(gomock.Any(), "91999").Return(models.Connection{}, nil)
package mocks

// Generate mocks for the collaborator interfaces of internal/dispatch:
// ConnectionResolver, EndpointResolver, StatusRecorder, Sender, Enqueuer, MediaResolver
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=dispatch_mock.go scheduled-dispatch/internal/dispatch ConnectionResolver,EndpointResolver,StatusRecorder,Sender,Enqueuer,MediaResolver
