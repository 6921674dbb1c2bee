package schema

func ptr[T any](v T) *T { return &v }

// fooRecords mirrors testdata/foo.yaml.
func fooRecords() *Records {
	return &Records{
		Serializers: []SerializerRecord{
			{
				Name: "CFoo",
				Fields: []FieldRecord{
					{VarName: "m_x", VarType: "int32"},
					{VarName: "m_flSpeed", VarType: "float32", BitCount: ptr(int32(10)), LowValue: ptr(float32(0)), HighValue: ptr(float32(100))},
					{VarName: "m_vecOrigin", VarType: "Vector", Encoder: "coord"},
					{VarName: "m_name", VarType: "CUtlSymbolLarge"},
					{VarName: "m_iValues", VarType: "uint16[4]"},
					{VarName: "m_hItems", VarType: "CNetworkUtlVectorBase< CHandle< CBaseEntity > >"},
					{VarName: "m_vecPlayers", VarType: "CUtlVectorEmbeddedNetworkVar< PlayerData >", SerializerName: "PlayerData"},
					{VarName: "m_pBody", VarType: "CBodyComponent", SerializerName: "CBodyComponentPoint"},
					{VarName: "m_nState", VarType: "MoveType_t"},
					{VarName: "m_hOwner", VarType: "CHandle< CBaseEntity >"},
				},
			},
			{
				Name: "PlayerData",
				Fields: []FieldRecord{
					{VarName: "m_iKills", VarType: "int32"},
					{VarName: "m_szName", VarType: "char[32]"},
					{VarName: "m_flags", VarType: "uint8"},
				},
			},
			{
				Name: "CBodyComponentPoint",
				Fields: []FieldRecord{
					{VarName: "m_cellX", VarType: "uint16"},
					{VarName: "m_vecOrigin", VarType: "Vector"},
				},
			},
		},
		Classes: []ClassRecord{
			{ClassID: 0, NetworkName: "CFoo"},
			{ClassID: 1, NetworkName: "PlayerData"},
			{ClassID: 2, NetworkName: "CBodyComponentPoint"},
		},
	}
}
