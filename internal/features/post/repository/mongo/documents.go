package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"viralsafe-backend/internal/features/post/models"
	mongoplatform "viralsafe-backend/internal/platform/mongo"
)

type saleDocument struct {
	From  string               `bson:"from"`
	To    string               `bson:"to"`
	Price primitive.Decimal128 `bson:"price"`
	Date  time.Time            `bson:"date"`
}

type nftDocument struct {
	TokenID           string                `bson:"token_id,omitempty"`
	ContractAddress   string                `bson:"contract_address,omitempty"`
	TokenURI          string                `bson:"token_uri,omitempty"`
	MetadataIPFSHash  string                `bson:"metadata_ipfs_hash,omitempty"`
	MintedAt          *time.Time            `bson:"minted_at,omitempty"`
	MintedTxHash      string                `bson:"minted_tx_hash,omitempty"`
	IsMinted          bool                  `bson:"is_minted"`
	AutoMinted        bool                  `bson:"auto_minted"`
	MintRequested     bool                  `bson:"mint_requested"`
	MintRequestedAt   *time.Time            `bson:"mint_requested_at,omitempty"`
	RoyaltyPercentage float64               `bson:"royalty_percentage"`
	CurrentOwner      string                `bson:"current_owner,omitempty"`
	LastSalePrice     *primitive.Decimal128 `bson:"last_sale_price,omitempty"`
	LastSaleDate      *time.Time            `bson:"last_sale_date,omitempty"`
	SaleHistory       []saleDocument        `bson:"sale_history,omitempty"`
}

// postDocument leaves nft_metadata absent until a mint is requested so dotted $set paths can create it.
type postDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AuthorID     string             `bson:"author_id"`
	AuthorWallet string             `bson:"author_wallet"`
	Title        string             `bson:"title,omitempty"`
	Content      string             `bson:"content"`
	ContentType  string             `bson:"content_type"`
	Status       string             `bson:"status"`
	Tags         models.Tags        `bson:"tags"`
	Metrics      models.Metrics     `bson:"metrics"`
	NFT          *nftDocument       `bson:"nft_metadata,omitempty"`

	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	PublishedAt *time.Time `bson:"published_at,omitempty"`
	ViralAt     *time.Time `bson:"viral_at,omitempty"`

	ModeratorNotes string     `bson:"moderator_notes,omitempty"`
	ModeratedBy    string     `bson:"moderated_by,omitempty"`
	ModeratedAt    *time.Time `bson:"moderated_at,omitempty"`
}

func toPostDocument(p *models.Post) *postDocument {
	doc := &postDocument{
		AuthorID:       p.AuthorID,
		AuthorWallet:   p.AuthorWallet,
		Title:          p.Title,
		Content:        p.Content,
		ContentType:    string(p.ContentType),
		Status:         string(p.Status),
		Tags:           p.Tags,
		Metrics:        p.Metrics,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		PublishedAt:    p.PublishedAt,
		ViralAt:        p.ViralAt,
		ModeratorNotes: p.ModeratorNotes,
		ModeratedBy:    p.ModeratedBy,
		ModeratedAt:    p.ModeratedAt,
	}
	if doc.Tags.Hashtags == nil {
		doc.Tags.Hashtags = []string{}
	}
	if doc.Tags.Mentions == nil {
		doc.Tags.Mentions = []string{}
	}
	if p.NFT != nil {
		doc.NFT = toNFTDocument(p.NFT)
	}
	return doc
}

func toNFTDocument(n *models.NFTMetadata) *nftDocument {
	doc := &nftDocument{
		TokenID:           n.TokenID,
		ContractAddress:   n.ContractAddress,
		TokenURI:          n.TokenURI,
		MetadataIPFSHash:  n.MetadataIPFSHash,
		MintedAt:          n.MintedAt,
		MintedTxHash:      n.MintedTxHash,
		IsMinted:          n.IsMinted,
		AutoMinted:        n.AutoMinted,
		MintRequested:     n.MintRequested,
		MintRequestedAt:   n.MintRequestedAt,
		RoyaltyPercentage: n.RoyaltyPercentage,
		CurrentOwner:      n.CurrentOwner,
		LastSaleDate:      n.LastSaleDate,
	}
	if n.LastSalePrice != nil {
		v := mongoplatform.ToDecimal128(*n.LastSalePrice)
		doc.LastSalePrice = &v
	}
	for _, s := range n.SaleHistory {
		doc.SaleHistory = append(doc.SaleHistory, saleDocument{
			From:  s.From,
			To:    s.To,
			Price: mongoplatform.ToDecimal128(s.Price),
			Date:  s.Date,
		})
	}
	return doc
}

func (d *postDocument) toModel() *models.Post {
	p := &models.Post{
		ID:             d.ID.Hex(),
		AuthorID:       d.AuthorID,
		AuthorWallet:   d.AuthorWallet,
		Title:          d.Title,
		Content:        d.Content,
		ContentType:    models.ContentType(d.ContentType),
		Status:         models.Status(d.Status),
		Tags:           d.Tags,
		Metrics:        d.Metrics,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		PublishedAt:    d.PublishedAt,
		ViralAt:        d.ViralAt,
		ModeratorNotes: d.ModeratorNotes,
		ModeratedBy:    d.ModeratedBy,
		ModeratedAt:    d.ModeratedAt,
	}
	if d.NFT != nil {
		n := d.NFT
		p.NFT = &models.NFTMetadata{
			TokenID:           n.TokenID,
			ContractAddress:   n.ContractAddress,
			TokenURI:          n.TokenURI,
			MetadataIPFSHash:  n.MetadataIPFSHash,
			MintedAt:          n.MintedAt,
			MintedTxHash:      n.MintedTxHash,
			IsMinted:          n.IsMinted,
			AutoMinted:        n.AutoMinted,
			MintRequested:     n.MintRequested,
			MintRequestedAt:   n.MintRequestedAt,
			RoyaltyPercentage: n.RoyaltyPercentage,
			CurrentOwner:      n.CurrentOwner,
			LastSaleDate:      n.LastSaleDate,
		}
		if n.LastSalePrice != nil {
			v := mongoplatform.FromDecimal128(*n.LastSalePrice)
			p.NFT.LastSalePrice = &v
		}
		for _, s := range n.SaleHistory {
			p.NFT.SaleHistory = append(p.NFT.SaleHistory, models.SaleRecord{
				From:  s.From,
				To:    s.To,
				Price: mongoplatform.FromDecimal128(s.Price),
				Date:  s.Date,
			})
		}
	}
	return p
}

type voteDocument struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	UserID      string               `bson:"user_id"`
	UserWallet  string               `bson:"user_wallet"`
	PostID      string               `bson:"post_id"`
	VoteType    string               `bson:"vote_type"`
	TokensSpent primitive.Decimal128 `bson:"tokens_spent"`
	CreatedAt   time.Time            `bson:"created_at"`
}

func (d *voteDocument) toModel() *models.Vote {
	return &models.Vote{
		ID:          d.ID.Hex(),
		UserID:      d.UserID,
		UserWallet:  d.UserWallet,
		PostID:      d.PostID,
		VoteType:    models.VoteType(d.VoteType),
		TokensSpent: mongoplatform.FromDecimal128(d.TokensSpent),
		CreatedAt:   d.CreatedAt,
	}
}
