package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/Kariqs/greenleaf-api/storage"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProductController struct {
	DB     *gorm.DB
	Images storage.ImageStore
	Logger *logrus.Logger
}

type productInput struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Category    string          `json:"category" binding:"required"`
	Strain      string          `json:"strain"`
	THCContent  float64         `json:"thcContent" binding:"gte=0,lte=100"`
	CBDContent  float64         `json:"cbdContent" binding:"gte=0,lte=100"`
	Weight      float64         `json:"weight" binding:"gte=0"`
	Unit        string          `json:"unit"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"min=0"`
	Attributes  datatypes.JSON  `json:"attributes"`
}

type productUpdate struct {
	Name        *string          `json:"name" binding:"omitempty,min=1"`
	Description *string          `json:"description"`
	Category    *string          `json:"category" binding:"omitempty,min=1"`
	Strain      *string          `json:"strain"`
	THCContent  *float64         `json:"thcContent" binding:"omitempty,gte=0,lte=100"`
	CBDContent  *float64         `json:"cbdContent" binding:"omitempty,gte=0,lte=100"`
	Weight      *float64         `json:"weight" binding:"omitempty,gte=0"`
	Unit        *string          `json:"unit"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" binding:"omitempty,min=0"`
	IsActive    *bool            `json:"isActive"`
	Attributes  datatypes.JSON   `json:"attributes"`
}

func (c *ProductController) findProduct(ctx *gin.Context) (*models.Product, bool) {
	productID, ok := paramID(ctx, "id")
	if !ok {
		return nil, false
	}

	var product models.Product
	if err := c.DB.WithContext(ctx.Request.Context()).First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondWithError(ctx, http.StatusNotFound, "Product not found", nil)
		} else {
			respondWithError(ctx, http.StatusInternalServerError, "Unable to retrieve product", err)
		}
		return nil, false
	}
	return &product, true
}

// canManage reports whether the caller owns the product or is an admin.
func canManage(ctx *gin.Context, product *models.Product) bool {
	userID, role, _ := middlewares.CurrentUser(ctx)
	if role == models.RoleAdmin || (role == models.RoleVendor && product.VendorID == userID) {
		return true
	}
	sendErrorResponse(ctx, http.StatusForbidden, "You can only manage your own products")
	return false
}

func (c *ProductController) CreateProduct(ctx *gin.Context) {
	var input productInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !input.Price.IsPositive() {
		respondWithError(ctx, http.StatusBadRequest, "Price must be greater than zero", nil)
		return
	}

	userID, _, _ := middlewares.CurrentUser(ctx)
	product := models.Product{
		VendorID:    userID,
		Name:        input.Name,
		Description: input.Description,
		Category:    strings.ToUpper(input.Category),
		Strain:      input.Strain,
		THCContent:  input.THCContent,
		CBDContent:  input.CBDContent,
		Weight:      input.Weight,
		Unit:        input.Unit,
		Price:       input.Price.Round(2),
		Stock:       input.Stock,
		IsActive:    true,
		Attributes:  input.Attributes,
	}

	if err := c.DB.WithContext(ctx.Request.Context()).Create(&product).Error; err != nil {
		respondWithError(ctx, http.StatusInternalServerError, "Failed to create product", err)
		return
	}

	c.Logger.WithFields(logrus.Fields{"product_id": product.ID, "vendor_id": userID}).Info("Product created")
	ctx.JSON(http.StatusCreated, gin.H{"product": product})
}

func (c *ProductController) UpdateProduct(ctx *gin.Context) {
	product, ok := c.findProduct(ctx)
	if !ok || !canManage(ctx, product) {
		return
	}

	var input productUpdate
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Category != nil {
		updates["category"] = strings.ToUpper(*input.Category)
	}
	if input.Strain != nil {
		updates["strain"] = *input.Strain
	}
	if input.THCContent != nil {
		updates["thc_content"] = *input.THCContent
	}
	if input.CBDContent != nil {
		updates["cbd_content"] = *input.CBDContent
	}
	if input.Weight != nil {
		updates["weight"] = *input.Weight
	}
	if input.Unit != nil {
		updates["unit"] = *input.Unit
	}
	if input.Price != nil {
		if !input.Price.IsPositive() {
			respondWithError(ctx, http.StatusBadRequest, "Price must be greater than zero", nil)
			return
		}
		updates["price"] = input.Price.Round(2)
	}
	if input.Stock != nil {
		updates["stock"] = *input.Stock
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Attributes != nil {
		updates["attributes"] = input.Attributes
	}

	if len(updates) > 0 {
		if err := c.DB.WithContext(ctx.Request.Context()).Model(product).Updates(updates).Error; err != nil {
			respondWithError(ctx, http.StatusInternalServerError, "Failed to update product", err)
			return
		}
	}

	if err := c.DB.WithContext(ctx.Request.Context()).Preload("Images").First(product, product.ID).Error; err != nil {
		respondWithError(ctx, http.StatusInternalServerError, "Unable to retrieve product", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

func (c *ProductController) DeleteProduct(ctx *gin.Context) {
	product, ok := c.findProduct(ctx)
	if !ok || !canManage(ctx, product) {
		return
	}

	// Deactivated, not deleted: order history still references the row.
	if err := c.DB.WithContext(ctx.Request.Context()).Model(product).Update("is_active", false).Error; err != nil {
		respondWithError(ctx, http.StatusInternalServerError, "Failed to delete product", err)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": "Product deleted successfully."})
}

func (c *ProductController) GetProducts(ctx *gin.Context) {
	page, limit := pagination(ctx, 12)

	query := c.DB.WithContext(ctx.Request.Context()).Model(&models.Product{}).Where("is_active = ?", true)
	if category := ctx.Query("category"); category != "" {
		query = query.Where("category = ?", strings.ToUpper(category))
	}
	if search := ctx.Query("search"); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		respondWithError(ctx, http.StatusInternalServerError, "Unable to fetch products", err)
		return
	}

	var products []models.Product
	if err := query.Preload("Images").
		Order("created_at desc, id desc").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&products).Error; err != nil {
		respondWithError(ctx, http.StatusInternalServerError, "Unable to fetch products", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"products": products,
		"metadata": paginationMetadata(count, page, limit),
	})
}

func (c *ProductController) GetProduct(ctx *gin.Context) {
	productID, ok := paramID(ctx, "id")
	if !ok {
		return
	}

	var product models.Product
	result := c.DB.WithContext(ctx.Request.Context()).Preload("Images").First(&product, productID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			respondWithError(ctx, http.StatusNotFound, "Product not found", nil)
		} else {
			respondWithError(ctx, http.StatusInternalServerError, "Unable to retrieve product", result.Error)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

func (c *ProductController) UploadProductImage(ctx *gin.Context) {
	product, ok := c.findProduct(ctx)
	if !ok || !canManage(ctx, product) {
		return
	}

	file, err := ctx.FormFile("image")
	if err != nil {
		respondWithError(ctx, http.StatusBadRequest, "No image uploaded", err)
		return
	}
	if file.Size > storage.MaxImageSize {
		respondWithError(ctx, http.StatusBadRequest, "Image exceeds the 5MB limit", nil)
		return
	}

	contentType := file.Header.Get("Content-Type")
	ext, allowed := storage.ImageExtension(contentType)
	if !allowed {
		respondWithError(ctx, http.StatusBadRequest, "Only jpeg, png, webp and gif images are allowed", nil)
		return
	}

	f, err := file.Open()
	if err != nil {
		respondWithError(ctx, http.StatusBadRequest, "Unable to read image", err)
		return
	}
	defer f.Close()

	key := storage.ImageKey(product.ID, ext)
	object, err := c.Images.Upload(ctx.Request.Context(), key, contentType, f)
	if err != nil {
		c.Logger.WithError(err).WithField("product_id", product.ID).Error("Image upload failed")
		respondWithError(ctx, http.StatusInternalServerError, "Failed to upload image", nil)
		return
	}

	image := models.ProductImage{
		ProductID:   product.ID,
		Key:         object.Key,
		Url:         object.Location,
		ContentType: contentType,
	}
	err = c.DB.WithContext(ctx.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&image).Error; err != nil {
			return err
		}
		return tx.Model(product).Update("image_url", object.Location).Error
	})
	if err != nil {
		respondWithError(ctx, http.StatusInternalServerError, "Failed to save image", err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message":  "Image uploaded successfully",
		"image":    image,
		"imageUrl": object.Location,
	})
}

type presignedImage struct {
	ID          uint      `json:"id"`
	Key         string    `json:"key"`
	Url         string    `json:"url"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (c *ProductController) GetProductImages(ctx *gin.Context) {
	product, ok := c.findProduct(ctx)
	if !ok {
		return
	}

	var images []models.ProductImage
	if err := c.DB.WithContext(ctx.Request.Context()).
		Where("product_id = ?", product.ID).
		Order("created_at desc, id desc").
		Find(&images).Error; err != nil {
		respondWithError(ctx, http.StatusInternalServerError, "Unable to fetch images", err)
		return
	}

	expiresAt := time.Now().Add(storage.PresignTTL)
	out := make([]presignedImage, 0, len(images))
	for _, image := range images {
		url, err := c.Images.PresignGet(ctx.Request.Context(), image.Key, storage.PresignTTL)
		if err != nil {
			c.Logger.WithError(err).WithField("key", image.Key).Error("Failed to presign image")
			respondWithError(ctx, http.StatusInternalServerError, "Unable to fetch images", nil)
			return
		}
		out = append(out, presignedImage{
			ID:          image.ID,
			Key:         image.Key,
			Url:         url,
			ContentType: image.ContentType,
			CreatedAt:   image.CreatedAt,
			ExpiresAt:   expiresAt,
		})
	}

	ctx.JSON(http.StatusOK, gin.H{"images": out})
}
