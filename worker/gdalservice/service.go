package gdalservice

import (
	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const convertMethod = "/gdalservice.Converter/Convert"

// ConverterServer converts granules named by ConvertRequest documents.
type ConverterServer interface {
	Convert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

func RegisterConverterServer(s *grpc.Server, srv ConverterServer) {
	s.RegisterService(&converterServiceDesc, srv)
}

func convertHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConverterServer).Convert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: convertMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ConverterServer).Convert(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var converterServiceDesc = grpc.ServiceDesc{
	ServiceName: "gdalservice.Converter",
	HandlerType: (*ConverterServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Convert",
			Handler:    convertHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gdalservice.proto",
}

type ConverterClient interface {
	Convert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type converterClient struct {
	cc grpc.ClientConnInterface
}

func NewConverterClient(cc grpc.ClientConnInterface) ConverterClient {
	return &converterClient{cc}
}

func (c *converterClient) Convert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, convertMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Convert sends req through client and decodes the result.
func Convert(ctx context.Context, client ConverterClient, req *ConvertRequest, opts ...grpc.CallOption) (*ConvertResult, error) {
	in, err := EncodeMessage(req)
	if err != nil {
		return nil, err
	}
	out, err := client.Convert(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	res := &ConvertResult{}
	if err := DecodeMessage(out, res); err != nil {
		return nil, err
	}
	return res, nil
}
